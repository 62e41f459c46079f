package util

import (
	"log"
	"os"
)

// Logger setup
var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
)

func init() {
	var out *os.File = os.Stderr
	if logFile, err := os.OpenFile("server.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666); err == nil {
		out = logFile
	}

	InfoLogger = log.New(out, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(out, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
}
