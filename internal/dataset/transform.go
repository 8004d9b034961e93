package dataset

// Transform builds the conversation record for a single row. Content is copied
// verbatim; empty fields produce messages with empty content.
func Transform(r Row) Conversation {
	return Conversation{
		Messages: []Message{
			{Role: RoleUser, Content: r.User},
			{Role: RoleAssistant, Content: r.Assistant},
		},
	}
}

// TransformAll maps every row to its record, preserving order and count.
func TransformAll(rows []Row) []Conversation {
	out := make([]Conversation, len(rows))
	for i, r := range rows {
		out[i] = Transform(r)
	}
	return out
}
