// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import "hrdep"

func main() {
	hrdep.Main()
}
