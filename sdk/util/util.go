// Copyright 2022, Pulumi Corporation.  All rights reserved.

package util

// Map f over arr.
func MapOver[T any, U any, F func(T) U](arr []T, f F) []U {
	l := make([]U, len(arr))
	for i, t := range arr {
		l[i] = f(t)
	}
	return l
}

// Keep the elements of arr for which f holds. The result is never nil.
func Filter[T any, F func(T) bool](arr []T, f F) []T {
	l := []T{}
	for _, t := range arr {
		if f(t) {
			l = append(l, t)
		}
	}
	return l
}

// Concatenate a list of lists, preserving order.
func Flatten[T any](arrs [][]T) []T {
	var l []T
	for _, arr := range arrs {
		l = append(l, arr...)
	}
	return l
}

// Retrieve the keys of a map in any order.
func MapKeys[K comparable, V any](m map[K]V) []K {
	arr := make([]K, len(m))
	i := 0
	for k := range m {
		arr[i] = k
		i++
	}
	return arr
}
