package redisserver

func init() {
	register(
		&Command{Name: "PING", MinArgs: 0, MaxArgs: 1, Flags: flagFast, Handler: pingCommand},
		&Command{Name: "ECHO", MinArgs: 1, MaxArgs: 1, Flags: flagFast, Handler: echoCommand},
		&Command{Name: "QUIT", MinArgs: 0, MaxArgs: -1, Flags: flagNoQueue | flagFast, Handler: quitCommand},
	)
}

// PING [message]
func pingCommand(_ *Context, args [][]byte) (Value, error) {
	if len(args) == 1 {
		return Bulk(args[0]), nil
	}
	return SimpleString("PONG"), nil
}

// ECHO message
func echoCommand(_ *Context, args [][]byte) (Value, error) {
	return Bulk(args[0]), nil
}

// QUIT replies +OK; the connection closes after the reply is flushed.
func quitCommand(ctx *Context, _ [][]byte) (Value, error) {
	ctx.sess.quit = true
	return OK, nil
}
