package cmd

import (
	_ "modbot-keeper/cmd/client"
	_ "modbot-keeper/cmd/root"
	_ "modbot-keeper/cmd/server"
)
