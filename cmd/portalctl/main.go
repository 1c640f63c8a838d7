package main

import (
	"log"

	tool "github.com/sandeepkv93/alumni-portal-client/internal/tools/portalctl"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
