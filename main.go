package main

import "github.com/ValentinKolb/shelfpod/cmd"

func main() {
	cmd.Execute()
}
