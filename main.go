package main

import "github.com/bottlecrm/authd/cmd"

func main() {
	cmd.Execute()
}
