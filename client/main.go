package main

import (
	"flag"
	"fmt"
	"os"

	"educhat/client/ui"
)

func main() {
	serverAddr := flag.String("server", "localhost:3215", "educhat hub address (host:port)")
	userID := flag.String("user", "", "user id")
	userName := flag.String("name", "", "display name")
	courseID := flag.String("course", "general", "course id")
	flag.Parse()

	app := ui.NewApp(*serverAddr, *userID, *userName, *courseID)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
