/*
Package sas7bdat extracts metadata and data from SAS7BDAT files, the
binary dataset format of the SAS statistical package.

There is no official documentation of the SAS7BDAT format.  Decoding is
done by a decode.Opener, which reports a file as a stream of events: one
metadata event, one variable event per column and one value event per
cell.  The built-in opener is the reverse-engineered decoder in
internal/sasfile; tests substitute a scripted one.

An Extractor turns the event stream into a DatasetDescriptor (GetMetadata)
or a row-major RowMatrix (ReadData, ReadAll).  Every call opens its own
decode handle and closes it before returning, so an Extractor can be shared
freely.  Rows can be read in windows of consecutive records to process
large files in pieces.

A Dataset adds queries on top of an Extractor: column selection, row
filters (ConditionFilter or a CEL expression with ExprFilter), chunked
iteration with Records and the distinct values of columns with
UniqueValues.
*/
package sas7bdat
