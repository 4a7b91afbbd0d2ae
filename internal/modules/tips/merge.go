package tips

// Merge reconciles the local and remote tip collections.
//
// The mapping is seeded with every local record, then overwritten with every
// remote record: remote always wins on a shared identifier, and adopted
// remote records are forced synced. Local-only records are retained as-is.
// Result order is unspecified; callers sort separately if needed.
func Merge(local, remote []Tip) []Tip {
	byID := make(map[string]Tip, len(local)+len(remote))

	for _, t := range local {
		byID[t.ID] = t
	}
	for _, t := range remote {
		t.Synced = true
		byID[t.ID] = t
	}

	merged := make([]Tip, 0, len(byID))
	for _, t := range byID {
		merged = append(merged, t)
	}
	return merged
}
