// Package rtc joins a conferencing room and captures the local microphone.
//
// Room opens the server's signalling WebSocket with the participant token and
// keeps it alive until Disconnect. Signalling payloads are not interpreted.
// EnableMicrophone starts an ffmpeg PCM capture and pumps frames to a Tap.
// Failures to acquire or keep the input device surface as ErrMediaDevices,
// both from EnableMicrophone and on the room's event channel.
package rtc
