package main

import "github.com/rccm-quiz/sessionguard/cmd/sessionguard/cmd"

func main() {
	cmd.Execute()
}
