package main

import "github.com/MeKo-Tech/camkit/cmd/camkit/cmd"

func main() {
	cmd.Execute()
}
