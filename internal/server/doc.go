// Package server hosts the HTTP surface: lifecycle management with graceful
// shutdown, the WebSocket hub that streams step views to observers, bearer
// token auth, and the REST routes for feedback and session inspection.
package server
