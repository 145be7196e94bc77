package commands

var (
	CallbackHandler = callbackHandler
	LoginMessage    = loginMessage
)
