// Package livekit mints and verifies conferencing access tokens.
//
// Tokens are HS256 JWTs signed with the API secret. The issuer is the API key
// and the subject is the participant identity. A "video" claim grants
// room-scoped join and publish rights, and a "roomConfig" claim asks the
// server to dispatch the named agent into the room.
package livekit
