// Command opsdesk is a task workflow desk for HR and operations teams.
package main

import "github.com/twiced-technology-gmbh/opsdesk/cmd"

func main() {
	cmd.Execute()
}
