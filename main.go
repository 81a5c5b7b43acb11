// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("🚀 Meter-Reader - Offline-First Field Data Collection")
	fmt.Println("=====================================================")
	fmt.Println()
	fmt.Println("Meter-Reader lets utility meter readers capture readings and photos in the")
	fmt.Println("field without connectivity, then sync them to the billing server with an")
	fmt.Println("idempotent, user-triggered sync engine.")
	fmt.Println()

	fmt.Println("📚 Available Examples:")
	fmt.Println()
	fmt.Println("1. 🌐 API Server (examples/api_server/)")
	fmt.Println("   The billing-side server using Go's net/http package and PostgreSQL")
	fmt.Println("   Features: JWT auth, reading submission, photo uploads, readings export")
	fmt.Println("   Run: cd examples/api_server && go run .")
	fmt.Println()

	fmt.Println("2. 📱 Reader App Simulator (examples/readerapp/)")
	fmt.Println("   A simulated handset: local SQLite store, offline captures, manual sync")
	fmt.Println("   Features: pending queue, merged meter list, offline/online scenarios")
	fmt.Println("   Run: cd examples/readerapp && go run .")
	fmt.Println()
}
