// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

/*
Package maskwrite implements the Mask Write Register (0x16) protocol data
unit: composing the AND/OR mask pair from bit writes, encoding the request,
decoding the response and checking that the device echoed the request.

	Function code         : 1 byte (0x16)
	Reference address     : 2 bytes
	AND-mask              : 2 bytes
	OR-mask               : 2 bytes

A device applies the request as

	Result = (Current AND And) OR (Or AND NOT And)

and answers with the same seven bytes.
*/
package maskwrite
