package main

import "chainq/cmd"

func main() {
	cmd.Execute()
}
