/*
 * Copyright 2021 National Library of Norway.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *       http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package warcio reads and writes WARC files byte for byte.

# WARC

The WARC format offers a standard way to structure, manage and store billions of resources collected from the web and elsewhere.
It is used to build applications for harvesting, managing, accessing, mining and exchanging content.

To learn more about the WARC standard, read the specification at https://iipc.github.io/warc-specifications/specifications/warc-format/warc-1.1/

# Write WARC records

A [Writer] writes records to an io.Writer, either uncompressed or as one gzip member per record.
A record is written with [Writer.WriteHeader], any number of [Writer.WritePayload] or [Writer.StreamPayload]
calls and [Writer.CloseRecord]. When the content length is unknown, or a digest should be computed
but is not in the header, the header is held back and the payload is spooled until the record is closed.

[CreateFile] and [CreateGeneratedFile] return a [FileWriter] which names the file with a temporary
suffix until it is closed.

# Read WARC records

A [Reader] created with [NewReader] iterates over the records of an io.Reader with [Reader.Next].
The framing, raw or gzip, is detected from the first bytes. Header fields are kept exactly as written.

A [Reader] created with [NewRandomAccessReader] reads single records from sources positioned at a
record with [Reader.NextAt].

[NewFileReader] opens a file and reads records starting at a given offset.

# Diagnostics

Problems in the data never stop reading or writing. They are collected as [diagnostics.Diagnostics]
on the record, the reader or the [WriteResponse]. A record is compliant when it has no error diagnostics.
Errors returned by the API are either I/O errors or violations of the calling contract, which match
[ErrInvalidUsage].
*/
package warcio
