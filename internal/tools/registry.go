package tools

import (
	"github.com/michaelbrown/schoolbot/internal/llm"
)

// Tool is the closed set of backend capabilities the model may call.
type Tool int

const (
	CreateMessage Tool = iota + 1
	FindMessages
	HistoryMessages
	FindClasses
	CreateStudent
	CreateClass
)

var toolNames = map[Tool]string{
	CreateMessage:   "create_message",
	FindMessages:    "find_messages",
	HistoryMessages: "history_messages",
	FindClasses:     "find_classes",
	CreateStudent:   "create_student",
	CreateClass:     "create_class",
}

func (t Tool) String() string {
	if name, ok := toolNames[t]; ok {
		return name
	}
	return "unknown"
}

// Mutates reports whether the tool creates records on the backend.
func (t Tool) Mutates() bool {
	switch t {
	case CreateMessage, CreateStudent, CreateClass:
		return true
	}
	return false
}

// RequiresToken reports whether the tool refuses to run without a bearer token.
func (t Tool) RequiresToken() bool {
	return t == CreateMessage
}

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        string // JSON Schema type
	Description string
	Required    bool
	Enum        []string
	Pattern     string
	Items       []Param // properties of object items when Type is "array"
}

// Declaration is a tool as advertised to the model.
type Declaration struct {
	Tool        Tool
	Description string
	Params      []Param
}

// Name returns the wire name of the tool.
func (d Declaration) Name() string { return d.Tool.String() }

// ToolDef renders the declaration as a JSON Schema tool definition.
func (d Declaration) ToolDef() llm.ToolDef {
	return llm.ToolDef{
		Name:        d.Name(),
		Description: d.Description,
		Parameters:  objectSchema(d.Params),
	}
}

func objectSchema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		props[p.Name] = paramSchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func paramSchema(p Param) map[string]any {
	s := map[string]any{
		"type":        p.Type,
		"description": p.Description,
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	if p.Pattern != "" {
		s["pattern"] = p.Pattern
	}
	if p.Type == "array" && len(p.Items) > 0 {
		s["items"] = objectSchema(p.Items)
	}
	return s
}

// Registry is the static tool catalog. It is built once and only read
// afterwards, so it is safe to share between requests.
type Registry struct {
	decls []Declaration
	index map[string]Tool
}

// NewRegistry returns the catalog of the six school-management tools.
func NewRegistry() *Registry {
	r := &Registry{index: make(map[string]Tool)}
	for _, d := range catalog() {
		r.decls = append(r.decls, d)
		r.index[d.Name()] = d.Tool
	}
	return r
}

// Declarations returns the declarations in catalog order.
func (r *Registry) Declarations() []Declaration {
	out := make([]Declaration, len(r.decls))
	copy(out, r.decls)
	return out
}

// ToolDefs returns the declarations in the form passed to the model.
func (r *Registry) ToolDefs() []llm.ToolDef {
	defs := make([]llm.ToolDef, len(r.decls))
	for i, d := range r.decls {
		defs[i] = d.ToolDef()
	}
	return defs
}

// Lookup resolves a wire name to a Tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

var sessionKeys = []string{"SESSION_1", "SESSION_2", "SESSION_3", "SESSION_4", "SESSION_5", "SESSION_6", "SESSION_7"}

func catalog() []Declaration {
	return []Declaration{
		{
			Tool:        CreateMessage,
			Description: "Create a new message in a conversation. If no chatId is given, the backend starts a new conversation.",
			Params: []Param{
				{Name: "content", Type: "string", Description: "Message text to send", Required: true},
				{Name: "sender", Type: "string", Description: "Who sends the message (USER or BOT)", Required: true, Enum: []string{"USER", "BOT"}},
				{Name: "chatId", Type: "integer", Description: "Conversation ID. Omit to create a new conversation"},
			},
		},
		{
			Tool:        FindMessages,
			Description: "Search and list the messages of one conversation, paginated.",
			Params: []Param{
				{Name: "chatId", Type: "integer", Description: "Conversation ID to search", Required: true},
				{Name: "page", Type: "integer", Description: "Page number (default 1)"},
				{Name: "limit", Type: "integer", Description: "Maximum messages per page (default 10)"},
			},
		},
		{
			Tool:        HistoryMessages,
			Description: "Get the message history of a conversation, formatted for chat-history display.",
			Params: []Param{
				{Name: "chatId", Type: "integer", Description: "Conversation ID", Required: true},
				{Name: "page", Type: "integer", Description: "Page number (default 1)"},
				{Name: "limit", Type: "integer", Description: "Maximum messages per page (default 20)"},
			},
		},
		{
			Tool:        FindClasses,
			Description: "Search classes with optional filters. Give both month and year to get the class calendar for that month.",
			Params: []Param{
				{Name: "name", Type: "string", Description: "Class name (fuzzy match)"},
				{Name: "status", Type: "string", Description: "Class status", Enum: []string{"ACTIVE", "INACTIVE"}},
				{Name: "page", Type: "integer", Description: "Page number (default 1)"},
				{Name: "rowPerPage", Type: "integer", Description: "Maximum classes per page (default 10)"},
				{Name: "learningDate", Type: "string", Description: "Specific study date (YYYY-MM-DD)"},
				{Name: "month", Type: "integer", Description: "Calendar month (1-12)"},
				{Name: "year", Type: "integer", Description: "Calendar year"},
			},
		},
		{
			Tool:        CreateStudent,
			Description: "Create a student and assign them to a class. Requires ADMIN, or TA with CREATE_STUDENT permission.",
			Params: []Param{
				{Name: "name", Type: "string", Description: "Student name", Required: true},
				{Name: "classId", Type: "integer", Description: "ID of the class to assign the student to", Required: true},
				{Name: "dob", Type: "string", Description: "Date of birth (YYYY-MM-DD)", Required: true},
				{Name: "parent", Type: "string", Description: "Parent name", Required: true},
				{Name: "phoneNumber", Type: "string", Description: "Primary phone number", Required: true},
				{Name: "secondPhoneNumber", Type: "string", Description: "Secondary phone number (optional)"},
			},
		},
		{
			Tool:        CreateClass,
			Description: "Create a new class with its weekly sessions. Requires ADMIN.",
			Params: []Param{
				{Name: "name", Type: "string", Description: "Class name", Required: true},
				{Name: "description", Type: "string", Description: "Class description"},
				{Name: "status", Type: "string", Description: "Class status (ACTIVE or INACTIVE)", Required: true, Enum: []string{"ACTIVE", "INACTIVE"}},
				{
					Name:        "sessions",
					Type:        "array",
					Description: "Weekly sessions of the class",
					Required:    true,
					Items: []Param{
						{Name: "sessionKey", Type: "string", Description: "Session key, SESSION_1 (Monday) to SESSION_7 (Sunday)", Required: true, Enum: sessionKeys},
						{Name: "startTime", Type: "string", Description: "Start time (HH:mm)", Required: true},
						{Name: "endTime", Type: "string", Description: "End time (HH:mm)", Required: true},
						{Name: "amount", Type: "number", Description: "Fee per session", Required: true},
					},
				},
			},
		},
	}
}
