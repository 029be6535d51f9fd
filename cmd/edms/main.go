package main

import "github.com/jinkaiteo/edms/cmd"

func main() {
	cmd.Execute()
}
