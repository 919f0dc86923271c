package main

import "github.com/elastic/apm-integration-testing/cmd/localmanager"

func main() {
	localmanager.Execute()
}
