// Package sources discovers media URLs for the fetch engine.
//
// A Discoverer turns a user-supplied target (a 4chan thread URL, a file of
// URLs, a single media URL) into a Discovery: the collection key that scopes
// the fetch cache, an output folder, an optional referer and the candidate
// items. The Registry picks the first discoverer that matches a target, and
// Destination maps each candidate to a collision-free file path.
//
// Sources never download media themselves; they only feed the engine.
package sources
