package main

import "github.com/ByLCY/prompter/cmd"

func main() {
	cmd.Execute()
}
