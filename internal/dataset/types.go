package dataset

// Role labels used in conversation records.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Input column names expected in the header row.
const (
	ColumnUser      = "User"
	ColumnAssistant = "Assistant"
)

// Row is one data line of the input file.
type Row struct {
	User      string
	Assistant string
}

// Message is a single turn in a conversation record.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the record published for each Row: a user message followed
// by an assistant message.
type Conversation struct {
	Messages []Message `json:"messages"`
}
