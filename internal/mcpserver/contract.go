package mcpserver

const listingFormatURI = "noteshare://listing-format"

// ListingFormat describes how note listings are paged for LLM consumers.
const ListingFormat = `# Noteshare Listing Format

Every listing tool (browse_subject, search_notes) returns one page:

` + "```" + `json
{
  "notes": [
    {"id": "0190...", "owner_id": "...", "name": "Thermodynamics week 3",
     "subject": "Physics", "stars": 4, "preview_ref": "notes/0190.../preview.png"}
  ],
  "next_cursor": "0190..."
}
` + "```" + `

## Rules

1. A page holds at most **10** notes, oldest upload first.
2. ` + "`" + `next_cursor` + "`" + ` is the ID of the last note on the page. It is present only when
   the page is full; pass it back as ` + "`" + `after` + "`" + ` to fetch the next page.
3. A page with fewer than 10 notes, or ` + "`" + `"notes": []` + "`" + `, is the end of the listing.
4. Notes are never repeated across pages of the same listing.
5. Use read_note with an ` + "`" + `id` + "`" + ` to get the recognized text of a note.

## Uploading

upload_note accepts a PDF (` + "`" + `%PDF-` + "`" + ` header) or one PNG, JPEG, GIF or WebP page.
Images are run through text recognition; the text becomes searchable.
`
