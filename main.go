package main

import "github.com/mercatus-exchange/mercatus/cmd"

func main() {
	cmd.Execute()
}
