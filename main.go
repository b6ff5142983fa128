package main

import "github.com/maxvaer/http11probe/cmd"

func main() {
	cmd.Execute()
}
