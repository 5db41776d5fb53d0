package main

import "github.com/openscribe/scribe-backend/internal/bootstrap"

func main() {
	bootstrap.Run()
}
