// Package connection serves and consumes the connection-details endpoint
// that hands a browser or the session orchestrator everything needed to
// join a conferencing room.
package connection

// Path is the route of the connection-details endpoint.
const Path = "/api/connection-details"

// Details is the credential bundle returned by the endpoint.
type Details struct {
	ServerURL        string `json:"serverUrl"`
	RoomName         string `json:"roomName"`
	ParticipantName  string `json:"participantName"`
	ParticipantToken string `json:"participantToken"`
}
