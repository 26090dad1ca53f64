package middleware

import (
	"log"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/util"
)

// AuthMiddleware resolves the SSH session's public key to a local
// account, creating one on first connect. With a closed instance,
// unknown keys are turned away instead.
func AuthMiddleware(ctx *app.Context) wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			_, found := ctx.DB.ReadAccBySession(s)

			switch {
			case found != nil:
				util.LogPublicKey(s)
			case ctx.Conf.Conf.Closed:
				wish.Println(s, "This instance is closed to new accounts.")
				return
			default:
				err, created := ctx.DB.CreateAccount(s, util.RandomString(10))
				if err != nil {
					log.Println("Could not create a user: ", err)
					return
				}

				if created {
					util.LogPublicKey(s)
				} else {
					log.Println("The user is still empty!")
					return
				}
			}
			h(s)
		}
	}
}
