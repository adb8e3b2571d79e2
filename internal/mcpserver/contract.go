package mcpserver

// MarkupFormat describes how note bodies store text and inline images, for
// LLM consumers reading or editing notes.
const MarkupFormat = `# Note Markup Format

Each note has a title and a body. Tools show the body as plain text in which
every inline image is represented by the placeholder token ` + "`[IMG]`" + `.

## Placeholders and images

- Images are bound to placeholders **by position**: the first ` + "`[IMG]`" + ` in
  the text is the first image, the second is the second, and so on.
- Deleting a placeholder drops the image bound to it and shifts every later
  image one slot earlier. Reordering placeholders does not move images.
- Extra placeholders with no image left are kept as literal ` + "`[IMG]`" + ` text.
- ` + "`read_note`" + ` reports how many images a note holds.

## Editing

- ` + "`update_note`" + ` keeps the note's existing images. Keep one ` + "`[IMG]`" + `
  per image you want to preserve, in the same order.
- ` + "`attach_image`" + ` embeds a new picture at a byte offset of the text on
  a line of its own. Pictures are downscaled to at most 800px on the longest
  side and stored as JPEG.
- Newlines in text are preserved.

## Stored form

Bodies with images are stored as a small HTML subset:

` + "```" + `html
first line<br/><img src="data:image/jpeg;base64,..." style="max-width:100%;" /><br/>last line
` + "```" + `

Bodies without images are stored verbatim. Notes with an empty title and body
are titled "New note" on creation and "Untitled note" on edit.
`
