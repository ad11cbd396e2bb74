// Package routes registers the gateway's resource routes. Most routes
// are plain relays described declaratively by a Spec table and served by
// one generic handler; the handlers that need cross-resource knowledge
// (chat gating, agent mutation authorization, file storage) are written
// out explicitly.
package routes
