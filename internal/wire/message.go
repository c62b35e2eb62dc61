package wire

// Message is the single payload shape exchanged on the wire. Which fields
// are set determines the kind of message:
//
//	welcome:     {isWelcome: true, name, auth}
//	verdict:     {isWelcome: true, authenticated}
//	application: {id, name, content}
//	reply:       {id, reply}
type Message struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name,omitempty"`
	Content       any    `json:"content,omitempty"`
	Reply         any    `json:"reply,omitempty"`
	IsWelcome     bool   `json:"isWelcome,omitempty"`
	Auth          any    `json:"auth,omitempty"`
	Authenticated *bool  `json:"authenticated,omitempty"`
}

// NewWelcome builds the handshake welcome message.
func NewWelcome(name string, auth any) *Message {
	return &Message{IsWelcome: true, Name: name, Auth: auth}
}

// NewVerdict builds the handshake verdict message.
func NewVerdict(accepted bool) *Message {
	return &Message{IsWelcome: true, Authenticated: &accepted}
}

// NewApplication builds a named application message.
func NewApplication(id, name string, content any) *Message {
	return &Message{ID: id, Name: name, Content: content}
}

// NewReply builds a reply correlated to id.
func NewReply(id string, reply any) *Message {
	return &Message{ID: id, Reply: reply}
}

// IsVerdict reports whether m carries a handshake verdict.
func (m *Message) IsVerdict() bool {
	return m.Authenticated != nil
}

// Accepted returns the verdict value; false when m is not a verdict.
func (m *Message) Accepted() bool {
	return m.Authenticated != nil && *m.Authenticated
}
