package extract

// Aggregate counts the accepted findings: totals per collection and a
// per-type breakdown across both. Pure counting, no failure modes.
func Aggregate(entities []Entity, events []Event) Statistics {
	st := Statistics{
		TotalEntities: len(entities),
		TotalEvents:   len(events),
		ByType:        make(map[string]int, 8),
	}
	for _, e := range entities {
		st.ByType[string(e.Type)]++
	}
	for _, e := range events {
		st.ByType[string(e.Type)]++
	}
	return st
}
