// Package logging provides the leveled logger shared by the server and the
// santa CLI.
//
// Output is prefixed with a colored level tag:
//
//	log := logging.Logger{Verbose: verbose, Debug: debug}
//	log.Infof("stored %d matches", n)
//
// Keys, link fragments and decrypted match text must never be passed to the
// logger.
package logging
