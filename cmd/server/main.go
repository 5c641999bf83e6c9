package main

import "github.com/heyito/ito-sub003/internal/bootstrap"

func main() {
	bootstrap.RunServer()
}
