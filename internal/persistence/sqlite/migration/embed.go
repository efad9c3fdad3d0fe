package migration

import "embed"

// Files holds the schema migrations shipped with the binary under sql/.
//
//go:embed sql/*.sql
var Files embed.FS

// FilesDir is the directory inside Files that contains the migrations.
const FilesDir = "sql"
