// bookshelf runs the book resource store and its forwarding gateway.
//
// Usage:
//
//	bookshelf store                Serve /books on --port (default 8080)
//	bookshelf gateway              Serve /gateway/books, forwarding to --upstream-url
//	bookshelf all                  Run both services in one process
package main

func main() {
	Execute()
}
