package main

import "sheetconsole/internal/app/server"

func main() {
	server.Run()
}
