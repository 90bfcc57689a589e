// chatscan is an incremental fuzzy keyword search over archived VOD chat.
package main

import (
	"os"

	"github.com/corey/chatscan/cmd/chatscan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
