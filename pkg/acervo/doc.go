// Package acervo is the server application of the cultural archive: configuration,
// command dispatch, the HTTP API and the live websocket feed.
//
// # Getting Started
//
// The binary in cmd/acervo calls [Main] with the process arguments. For the command
// line, see [Parse]; for the routes, see [App.Handler].
//
//	# Local development against the in-memory store
//	acervo -backend memory -log-format console run
//
//	# Prepare the schema, then serve from PostgreSQL
//	acervo -backend postgres migrate
//	acervo -backend postgres run
//
//	# Serve from SurrealDB with LIVE queries driving the websocket feed
//	acervo -backend surrealdb run
//
// # Moving Between Backends
//
// With -backend cqrs the server holds both a PostgreSQL and a SurrealDB store and
// routes reads and writes by migration mode (see the cqrs package):
//
//  1. single: PostgreSQL only, SurrealDB idle
//  2. read_only: writes rejected while the final catch-up sync runs
//     (acervo -backend cqrs sync -sync-since 2024-05-01T00:00:00Z)
//  3. switching: reads from SurrealDB, writes still on PostgreSQL
//  4. reversed: SurrealDB for reads and writes; a reverse sync keeps
//     PostgreSQL ready for rollback
//
// The mode can be changed at runtime through POST /api/admin/mode, and writes can
// be paused through POST /api/admin/read-only independently of the mode.
//
// # Environment Variables
//
// Every setting has an environment variable; a .env file in the working directory
// (or the file named by ACERVO_ENV_FILE) is loaded first. Flags override both.
//
//	ACERVO_BACKEND   memory | postgres | surrealdb | cqrs (default memory)
//	ACERVO_MODE      cqrs migration mode (default single)
//	PORT             HTTP port (default 8080)
//	POSTGRES_DSN     PostgreSQL connection string
//	SURREALDB_URL    SurrealDB endpoint (default ws://localhost:8000/rpc)
//	SURREALDB_NS, SURREALDB_DB, SURREALDB_USER, SURREALDB_PASS
//	POLL_INTERVAL    re-run period of subscriptions on PostgreSQL (default 2s)
//	JWT_SECRET       HS256 secret of identity tokens
//	JWT_ISSUER       required "iss" claim, if set
//	S3_BUCKET, S3_REGION, S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, S3_PUBLIC_URL
//	UPLOAD_PRESET    preset recorded on uploaded objects (default acervo)
//	LOG_LEVEL        debug | info | warn | error (default info)
//	LOG_FORMAT       json | console (default json)
package acervo
