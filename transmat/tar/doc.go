/*
The tar transmat moves filesystems in and out of the widely-recognized "tar" format.

Extract turns a base rootfs archive into a plain directory tree.
Links in the archive are materialized as copies of what they point to,
so the tree can be copied, packed, or inspected by tools that know nothing
about the archive's link structure.

Pack does the reverse for a finished rootfs, emitting entries rooted at "./".
*/
package tartrans
