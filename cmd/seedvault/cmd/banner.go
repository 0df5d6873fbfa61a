package cmd

import (
	"fmt"
)

const banner = `
                     _                 _ _
  ___  ___  ___  __| |_   ____ _ _   _| | |_
 / __|/ _ \/ _ \/ _` + "`" + ` \ \ / / _` + "`" + ` | | | | | __|
 \__ \  __/  __/ (_| |\ V / (_| | |_| | | |_
 |___/\___|\___|\__,_| \_/ \__,_|\__,_|_|\__|
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Pepper Service - Version %s\x1b[0m\n\n", Version)
}
