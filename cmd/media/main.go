package main

import (
	"os"

	"github.com/Aiden-ho/twitter-server/internal/app"
	"github.com/Aiden-ho/twitter-server/internal/logging"
)

func main() {
	root := newRootCommand()
	os.Exit(app.Run("media", logging.Base(), root.ExecuteContext))
}
