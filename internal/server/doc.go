// Package server assembles the gateway's gin engine: middleware chain,
// health and metrics endpoints, authenticated resource routes, and the
// HTTP server lifecycle.
package server
