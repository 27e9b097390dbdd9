package main

import "github.com/ValentinKolb/uniauth/cmd"

func main() {
	cmd.Execute()
}
