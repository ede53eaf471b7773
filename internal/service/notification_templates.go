package service

// Built-in subjects and bodies, used when the settings leave an override empty.
// Placeholders are written as {name}; values are HTML-escaped before substitution.
const (
	defaultAssignmentSubject  = "[Ticket #{ticket_id}] Assigned to you: {ticket_subject}"
	defaultAssignmentTemplate = `<p>Hello {assignee_name},</p>
<p>Ticket <strong>#{ticket_id}</strong> has been assigned to you by {actor_name}.</p>
<ul>
<li>Subject: {ticket_subject}</li>
<li>Priority: {ticket_priority}</li>
<li>Category: {ticket_category}</li>
<li>Customer: {customer_name} ({customer_email})</li>
<li>Created: {created_at}</li>
</ul>
<p><a href="{ticket_url}">View ticket</a></p>`

	defaultReassignmentSubject  = "[Ticket #{ticket_id}] Reassigned to you: {ticket_subject}"
	defaultReassignmentTemplate = `<p>Hello {assignee_name},</p>
<p>Ticket <strong>#{ticket_id}</strong> was reassigned from {previous_assignee_name} to you by {actor_name}.</p>
<ul>
<li>Subject: {ticket_subject}</li>
<li>Priority: {ticket_priority}</li>
<li>Category: {ticket_category}</li>
<li>Customer: {customer_name} ({customer_email})</li>
<li>Updated: {updated_at}</li>
</ul>
<p><a href="{ticket_url}">View ticket</a></p>`

	previousAssigneeSubject  = "[Ticket #{ticket_id}] Reassigned to {assignee_name}"
	previousAssigneeTemplate = `<p>Hello {previous_assignee_name},</p>
<p>Ticket <strong>#{ticket_id}</strong> ({ticket_subject}) is no longer assigned to you.
{actor_name} reassigned it to {assignee_name}.</p>
<p><a href="{ticket_url}">View ticket</a></p>`

	defaultStatusChangeSubject  = "[Ticket #{ticket_id}] Status updated: {new_status}"
	defaultStatusChangeTemplate = `<p>Hello {customer_name},</p>
<p>The status of your ticket <strong>#{ticket_id}</strong> ({ticket_subject}) changed from {old_status} to {new_status}.</p>
<p><a href="{ticket_url}">View ticket</a></p>`
)
