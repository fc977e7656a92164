// Where: cmd/create-apikey/main.go
// What: CLI entrypoint.
// Why: Generate a root API key and exit with the result's status.
package main

import (
	"os"

	"github.com/privatebox/create-apikey/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:], buildDependencies()))
}
