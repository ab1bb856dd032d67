// Package tui is the interactive select program: a Bubble Tea model that
// runs one repository selection, shows validation and clone progress, and
// hosts the modal prompts the workspace store raises along the way.
//
// The program is fed from outside. Store states arrive as StateMsg, clone
// output as ProgressMsg, and prompts through ProgramDialog, which sends a
// message into the program and blocks until the user answers.
package tui
