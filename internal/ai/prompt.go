package ai

import (
	"fmt"
	"strings"

	"github.com/spec-kit/supportdesk/internal/domain"
)

// SystemPrompt frames the assistant for every provider that accepts one.
const SystemPrompt = "You are a helpful, professional customer support agent. " +
	"You write clear, empathetic and accurate replies to customer support tickets."

// InstructionSuffix closes every prompt. Length is advisory only.
const InstructionSuffix = "Write the next reply from the SUPPORT AGENT to the CUSTOMER. " +
	"Respond in plain text between 100 and 350 characters. " +
	"Separate paragraphs with blank lines. Do not use markdown, headings or lists. " +
	"Do not include a subject line or a signature placeholder."

const (
	labelCustomer = "CUSTOMER"
	labelAgent    = "SUPPORT AGENT"
)

// BuildContext renders the ticket and its chronological thread. Each reply is
// labeled by whether its author owns the ticket.
func BuildContext(ticket domain.Ticket, thread []domain.Reply, authorNames map[int64]string) string {
	var b strings.Builder
	b.WriteString("Support ticket\n")
	fmt.Fprintf(&b, "Subject: %s\n", ticket.Subject)
	category := "Uncategorized"
	if ticket.Category != nil && *ticket.Category != "" {
		category = *ticket.Category
	}
	fmt.Fprintf(&b, "Category: %s\n", category)
	fmt.Fprintf(&b, "Priority: %s\n", ticket.Priority)
	fmt.Fprintf(&b, "Status: %s\n", ticket.Status)
	fmt.Fprintf(&b, "Description:\n%s\n", strings.TrimSpace(ticket.Description))

	if len(thread) > 0 {
		b.WriteString("\nConversation so far:\n")
	}
	for _, reply := range thread {
		label := labelAgent
		if reply.AuthorID == ticket.OwnerID {
			label = labelCustomer
		}
		if name := authorNames[reply.AuthorID]; name != "" {
			fmt.Fprintf(&b, "\n[%s] %s:\n%s\n", label, name, strings.TrimSpace(reply.Body))
		} else {
			fmt.Fprintf(&b, "\n[%s]:\n%s\n", label, strings.TrimSpace(reply.Body))
		}
	}

	b.WriteString("\n")
	b.WriteString(InstructionSuffix)
	return b.String()
}
