// Package http exposes the family scheduler over HTTP.
//
// The router registers the following endpoints:
//   - POST /families, GET|POST /families/{familyID}/members,
//     DELETE /families/{familyID}/members/{memberID}: family and roster
//     management exchanging the DTOs in family_handler.go.
//   - POST /users, POST /users/{userID}/push-subscriptions,
//     POST /users/{userID}/chat-links: notification recipients and their
//     channels.
//   - POST /families/{familyID}/capture: parses {"text"} into an event.
//     Responds 201 {event, parsed, conflicts}, 200 {duplicate:true} for a
//     repeated source_message_id and 422 when nothing could be understood.
//   - GET|POST /families/{familyID}/events, PUT|DELETE
//     /families/{familyID}/events/{eventID}: event CRUD. Overlaps are returned
//     as conflicts and never block a save.
//   - GET|PUT /families/{familyID}/reminder-rules: per-category offsets.
//   - GET /families/{familyID}/calendar.ics: iCalendar export.
//   - GET|POST /internal/reminders?action=reminders|summary: runs a pass,
//     guarded by the trigger secret.
//   - GET /metrics and GET /healthz.
//
// Family API routes require the API bearer token.
package http
