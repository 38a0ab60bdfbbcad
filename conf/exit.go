package conf

// Exit status bits. The process exit code is the OR of every condition
// encountered; zero means a clean transfer.
const (
	ExitMemory       = 1  // buffer or history allocation failed
	ExitAccess       = 2  // an input file could not be accessed
	ExitSignal       = 4  // terminated by a signal
	ExitTransfer     = 8  // a read or write failed
	ExitRemote       = 16 // remote control or PID file problem
	ExitStoreForward = 32 // store-and-forward failure
)
