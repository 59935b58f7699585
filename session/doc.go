// Package session holds the client's session model and its durable storage
// backends.
//
// A [Session] is the record of an authenticated principal: access token,
// minimal account identity, and expiry. [Store] implementations persist it
// across restarts next to an app-version marker; [Prepare] wipes a store
// whose marker disagrees with the running version before anything trusts
// its contents.
//
// Three backends ship with the package: [MemoryStore] (ephemeral),
// [FileStore] (single-user, local-storage equivalent) and [RedisStore]
// (one account shared by several processes).
package session
